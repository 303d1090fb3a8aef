// Package document loads documentation sources from disk, decodes their text
// encoding, and writes rewritten text back in the encoding it arrived in.
package document
