package main

import "github.com/frahmantamala/photobooth-payment/cmd"

func main() {
	cmd.Execute()
}
