// Package main is the entry point of the purple binary.
package main

import (
	"context"

	"github.com/purplejs/purplejs/cmd/state"
	"github.com/purplejs/purplejs/internal/cmd"
)

func main() {
	cmd.ExecuteWithGlobalState(state.NewGlobalState(context.Background()))
}
