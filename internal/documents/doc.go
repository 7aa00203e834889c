// Package documents stores site documents whose bodies reference media
// assets. The rewriter walks these page by page during a migration.
package documents
