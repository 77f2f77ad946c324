//go:build !windows

package prompt

func confirmDialog(title, question string) (bool, error) {
	return false, errNoDialog
}
