package main

import "parceltrack/server"

func main() {
	server.Main()
}
