// Package backends contains the built-in backend variants and registers
// them by type tag:
//
//   - local: objects under basedir, secrets in the system keyring or a
//     Fernet vault
//   - portable: objects under basedir, secrets in a Fernet vault
//   - aws: objects in S3, secrets in Secrets Manager
//   - nas: objects over WebDAV, secrets over SSH
//   - tinyserver: objects and secrets through a multicloud tiny server
package backends
