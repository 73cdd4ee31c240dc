// Command stencil renders, checks and serves ODF document templates.
package main

func main() {
	Execute()
}
