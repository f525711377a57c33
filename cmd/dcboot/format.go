package main

import "fmt"

func hex(v uint32) string {
	return fmt.Sprintf("0x%06X", v)
}
