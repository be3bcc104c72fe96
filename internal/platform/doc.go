// Package platform smooths over filesystem differences between operating
// systems. Permission bits are applied on Unix and ignored on Windows, where
// they have no meaning.
package platform
