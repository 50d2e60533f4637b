// Command owlctl deploys the OwlCoin token and OwlPresale contracts.
package main

import "github.com/EngrMohsinAzam/OwlCoin/cmd"

func main() {
	cmd.Execute()
}
