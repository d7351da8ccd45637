// Command teactl is the terminal client for the tea-tool analysis
// backend: it manages pooled connections, live channels, frame
// streaming, and chat summarization.
package main

func main() {
	execute()
}
