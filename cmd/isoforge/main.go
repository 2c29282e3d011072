// Command isoforge builds ISO 9660 (+ Joliet/ISO 9660:1999/HFS+/El
// Torito/appended-partition) disc images from a source directory,
// replacing the teacher's bare "flag"-based cmd/main.go with the
// cobra+viper CLI idiom the rest of the retrieved pack uses.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
