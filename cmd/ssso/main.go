package main

import "github.com/CoachCoe/polkadot-sso/cmd/ssso/cmd"

func main() {
	cmd.Execute()
}
