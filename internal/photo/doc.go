// Package photo defines the catalog entity shared by every layer of the
// service: the photo record, its blob variants, search options and result
// pages, tag normalization, and the error taxonomy callers classify with
// errors.Is and errors.As.
//
// Records returned from this package's consumers are snapshots. Mutating a
// returned Record never affects the catalog; use the library's AddTags
// operation instead.
package photo
