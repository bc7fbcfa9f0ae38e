package main

import "volunteer-attendance/cmd"

func main() {
	cmd.Execute()
}
