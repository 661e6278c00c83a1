// Package backtrans performs back-translation: text is translated into an
// intermediate language and then back into its source language, so the two
// versions can be compared for fidelity.
//
// Backtrans talks to a translation provider (the free Google endpoint by
// default) with classified failures, bounded exponential backoff, a bounded
// translation memory and cooperative cancellation. A BatchProcessor drives
// the client sequentially over many documents.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/backtrans"
//	    "github.com/ZaguanLabs/backtrans/cache"
//	    "github.com/ZaguanLabs/backtrans/provider"
//	)
//
//	func main() {
//	    mem := cache.NewMemoryCache(cache.DefaultMaxEntries)
//
//	    c := backtrans.NewClient(
//	        backtrans.WithProvider(provider.NewGoogleUnofficialProvider(provider.GoogleConfig{})),
//	        backtrans.WithCache(mem),
//	    )
//
//	    res, err := c.BackTranslate(context.Background(), backtrans.BackTranslateRequest{
//	        Text:             "Hello world",
//	        SourceLang:       "en",
//	        IntermediateLang: "ja",
//	    }, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.BackTranslatedText)
//	}
package backtrans
