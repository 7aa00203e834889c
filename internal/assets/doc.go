// Package assets stores media assets: a SQLite catalog of metadata plus the
// file bytes in the library directory. It exposes the creation hook the
// linking service registers to react to migration uploads.
package assets
