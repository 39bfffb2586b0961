// Command pipecall spawns Demo children and calls them over inherited pipes.
//
//	pipecall run                 start workers, run the demo calls, exit
//	pipecall child <in> <out>    serve Demo on the given descriptors
//	pipecall workers             list registered children (etcd only)
package main

func main() {
	Execute()
}
