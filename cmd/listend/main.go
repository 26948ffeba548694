package main

import (
	"os"
	"strings"

	listend "github.com/0xa1bed0/listend/internal/apps/listend/cmds"
	"github.com/0xa1bed0/listend/internal/logs"
	"github.com/0xa1bed0/listend/internal/runtime"
)

func main() {
	logs.SetComponent(detectComponent("listend"))

	var execErr error

	rt := runtime.New()
	defer rt.Finalize("listend", "Type 'listend help' to get help.", &execErr)

	execErr = listend.Execute(rt)
}

func detectComponent(base string) string {
	if len(os.Args) > 1 && len(os.Args[1]) > 0 && os.Args[1][0] != '-' {
		return base + ":" + strings.Join(os.Args[1:], " ")
	}
	return base
}
