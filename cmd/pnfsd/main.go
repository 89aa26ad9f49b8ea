// Command pnfsd runs the namespace engine server.
package main

import "github.com/pnfsns/pnfsd/cmd"

func main() {
	cmd.Execute()
}
