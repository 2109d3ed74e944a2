// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object storage.
//
// The store persists each snapshot as a single object, so the bucket never
// holds a partially written blob: PutObject either fully replaces the key or
// leaves the previous version in place.
//
// Example:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := miniostore.NewStore(client, "vectors", "myapp/")
package minio
