// Package textutil provides the text shaping used when turning raw engine
// output into publishable artifacts.
//
// The primary use cases are:
//   - Slugging source file names into filesystem-safe directory segments
//   - Reflowing raw transcripts into readable paragraphs
//   - Excerpting a short summary from a transcript
package textutil
