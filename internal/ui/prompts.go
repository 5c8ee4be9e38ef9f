package ui

import (
	"github.com/AlecAivazis/survey/v2"
)

// PromptYesNo prompts the user for a yes/no answer
func (u *UI) PromptYesNo(prompt string, defaultYes bool) (bool, error) {
	var result bool
	p := &survey.Confirm{
		Message: prompt,
		Default: defaultYes,
	}

	err := survey.AskOne(p, &result)
	return result, err
}

// Confirm asks for confirmation unless assume-yes is set
func (u *UI) Confirm(prompt string) (bool, error) {
	if u.assumeYes {
		return true, nil
	}
	return u.PromptYesNo(prompt, false)
}
