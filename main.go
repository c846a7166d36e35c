package main

import "github.com/solusipay/payment-aggregator/cmd"

func main() {
	cmd.Execute()
}
