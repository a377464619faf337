package main

import "ollama-chat-be/cmd/modelctl/cmd"

func main() {
	cmd.Execute()
}
