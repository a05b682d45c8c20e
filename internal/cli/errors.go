package cli

import (
	"errors"

	"github.com/kardexapp/kardex/internal/ledger"
)

// reportEngineError renders an engine failure and picks the exit code:
// business-rule rejections exit 1, everything else exits 2.
func reportEngineError(out *OutputFormatter, err error) error {
	var oe *ledger.OpError
	if errors.As(err, &oe) {
		out.Error(string(oe.Code), oe.Message, map[string]string{
			"product_id": oe.ProductID,
			"variant_id": oe.VariantID,
		})
		return NewExitError(ExitFailure, oe.Message)
	}
	out.Error("COMMAND_FAILED", err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

// requireConfirm gates destructive commands behind an explicit flag.
func requireConfirm(out *OutputFormatter, confirmed bool, what string) error {
	if confirmed {
		return nil
	}
	msg := what + " is destructive; re-run with --confirm"
	out.Error("CONFIRM_REQUIRED", msg, nil)
	return NewExitError(ExitFailure, msg)
}
