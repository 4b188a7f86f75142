// Package newscat provides a typed HTTP client for the newscat news
// category inference service.
//
// Basic usage:
//
//	client := newscat.New("http://localhost:8000")
//	pred, err := client.Predict(ctx, newscat.Request{
//		Source:      "bbc",
//		URL:         "http://example.com/markets",
//		Title:       "Markets rally",
//		Description: "stocks rally amid earnings season",
//	})
//	if err != nil {
//		// handle error
//	}
//	fmt.Println(pred.Label, pred.Scores)
package newscat
