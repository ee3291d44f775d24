// Package blobgate provides a blob storage gateway with a uniform create/read
// contract over interchangeable physical backends.
//
// Blobs are immutable named byte sequences. A single logical create persists
// the bytes into a content store and records authoritative metadata (size,
// checksum, creation time, owning backend) in a separate metadata store,
// compensating with a best-effort content delete when the metadata half fails.
//
// # Key Components
//
//   - BlobService: orchestrates the two-store create/read protocol
//   - Storage: the save/get/delete contract implemented by the filesystem,
//     S3-over-HTTP, FTP, and database adapters
//   - MetadataRepo: authoritative store of blob existence and attributes
//   - UnitOfWork: transactional boundary for metadata writes when metadata and
//     content share the same database
//   - Signer: AWS Signature V4 request signing built from primitives, used by
//     the HTTP object-store adapter
//
// # Example Usage
//
//	service, err := blobgate.NewBlobService(repo, storage, blobgate.ServiceConfig{
//	    Backend: blobgate.BackendFS,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blob, err := service.Save(ctx, "doc-1", base64Payload)
//
//	blob, err = service.Get(ctx, "doc-1")
//
// See the filesystem, s3, ftpstore, and database packages for the adapters and
// the http package for the REST surface.
package blobgate
