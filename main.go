package main

import "github.com/oss-insights/contrib-stats/cmd"

func main() {
	cmd.Execute()
}
