/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/akostadinov/chunchun/cmd"

func main() {
	cmd.Execute()
}
