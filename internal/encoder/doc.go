// Package encoder writes and reads category records in three file formats.
//
// # Supported Formats
//
//   - binary: bare concatenation of Avro binary datums, no header and no
//     separator. The category schema is needed to read it back.
//   - ocf: Avro Object Container File with the writer schema embedded.
//   - parquet: one typed Parquet file per category.
//
// # Factory
//
// Use Factory to create writers and readers for the configured format:
//
//	factory, err := encoder.NewFactory(event.FormatOCF, "snappy")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, err := factory.CreateWriter(file, sch)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
// Readers return a lazy sequence:
//
//	r, _ := factory.CreateReader(sch)
//	for rec, err := range r.Records(file) {
//	    ...
//	}
//
// # Compression Options
//
//	binary:  "uncompressed"
//	ocf:     "null", "deflate", "snappy"
//	parquet: "snappy", "gzip", "zstd", "lz4", "uncompressed"
//
// Writers are not safe for concurrent use.
package encoder
