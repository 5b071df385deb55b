// Command xpvm compiles and runs XPath 3.1 expressions against XML
// documents from the command line.
package main

func main() {
	Execute()
}
