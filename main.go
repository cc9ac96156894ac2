package main

import (
	"errors"
	"os"

	"github.com/cosmos/aper/cmd"
	"go.uber.org/zap"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Code == cmd.ExitCodeFailure {
				zap.S().Errorw("command failed", "error", exitErr.Err)
			}
			_ = zap.L().Sync()
			os.Exit(exitErr.Code)
		}
		zap.S().Fatalw("command failed", "error", err)
	}
}
