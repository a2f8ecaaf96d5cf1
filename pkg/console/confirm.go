package console

import (
	"os"

	"github.com/charmbracelet/huh"
)

// IsAccessibleMode reports whether accessible (non-animated) rendering was
// requested via the ACCESSIBLE environment variable.
func IsAccessibleMode() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// ConfirmAction shows an interactive confirmation dialog.
// Returns true if the user confirms, false if they cancel or an error occurs.
func ConfirmAction(title, affirmative, negative string) (bool, error) {
	var confirmed bool

	confirmForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(affirmative).
				Negative(negative).
				Value(&confirmed),
		),
	).WithAccessible(IsAccessibleMode())

	if err := confirmForm.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}
