// Package s3 provides a blobstore.BlobStore backed by Amazon S3.
//
// Snapshots are small single objects, so the store uses plain uploads via
// the s3 transfer manager and ranged GETs for reads. Configure the client
// with the standard AWS SDK config chain:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := s3store.NewStore(s3.NewFromConfig(cfg), "my-bucket", "vectors/")
package s3
