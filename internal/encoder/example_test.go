package encoder_test

import (
	"bytes"
	"fmt"

	"github.com/jittakal/logavro/internal/encoder"
	"github.com/jittakal/logavro/internal/schema"
	"github.com/jittakal/logavro/pkg/event"
)

func ExampleFactory() {
	schemas, err := schema.Default()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	sch, _ := schemas.For(event.CategoryRating)

	factory, err := encoder.NewFactory(event.FormatBinary, "")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	var buf bytes.Buffer
	w, _ := factory.CreateWriter(&buf, sch)
	_ = w.Write(&event.MovieRatingEvent{Time: "2023-08-01T10:17:00", UserID: 42, MovieID: "Inception", Rating: "4"})
	_ = w.Close()

	r, _ := factory.CreateReader(sch)
	for rec, err := range r.Records(&buf) {
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		rating := rec.(*event.MovieRatingEvent)
		fmt.Println(rating.MovieID, rating.Rating)
	}
	fmt.Println(factory.FileExtension())

	// Output:
	// Inception 4
	// .avro
}
