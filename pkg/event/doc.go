// Package event defines the log categories and typed records of the movie log ETL.
//
// # Categories
//
// Every CSV row declares one of three categories in its "Type" column:
//
//	event.CategoryRecommendation  // "Recommendation"
//	event.CategoryMovie           // "Movie"
//	event.CategoryRating          // "Rating"
//
// ParseCategory is the only way to turn a tag into a Category; anything else
// is reported as unknown by the caller.
//
// # Records
//
// Parsers produce one of RecommendationRequest, MovieWatchEvent or
// MovieRatingEvent, all implementing Record. Native converts a record to the
// map form goavro encodes, and FromNative performs the inverse on decoded
// data:
//
//	rec := &event.MovieWatchEvent{Time: "2023-08-01T10:16:00", UserID: 42, MovieID: "The Matrix", Minute: "5"}
//	native := rec.Native()
//	back, err := event.FromNative(event.CategoryMovie, native)
//
// # File Formats
//
//	event.FormatBinary   // concatenated Avro binary records, no container
//	event.FormatOCF      // Avro object container file
//	event.FormatParquet  // columnar export
package event
