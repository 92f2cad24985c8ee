package event_test

import (
	"fmt"

	"github.com/jittakal/logavro/pkg/event"
)

func ExampleParseCategory() {
	c, ok := event.ParseCategory("Movie")
	fmt.Println(c, c.Slug(), ok)

	_, ok = event.ParseCategory("Purchase")
	fmt.Println(ok)
	// Output:
	// Movie movie true
	// false
}

func ExampleMovieWatchEvent_Native() {
	rec := &event.MovieWatchEvent{
		Time:    "2023-08-01T10:16:00",
		UserID:  42,
		MovieID: "The Matrix",
		Minute:  "5",
	}

	native := rec.Native()
	fmt.Println(native["movieid"], native["userid"])
	// Output: The Matrix 42
}
