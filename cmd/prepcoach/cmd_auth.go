// Package main implements authentication CLI commands for prepcoach.
// This file handles login, logout, onboarding, and identity display.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"prepcoach/internal/engine"
	"prepcoach/internal/identity"
)

// loginCmd signs in with a phone number and OTP code
var loginCmd = &cobra.Command{
	Use:   "login <phone>",
	Short: "Sign in with a phone number",
	Long: `Requests a verification code for the phone number and signs in.

The code is printed to the terminal (this is a local mock of the OTP
flow); enter it at the prompt to complete sign-in.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

// logoutCmd signs out and wipes all local user state
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear all local state",
	RunE:  runLogout,
}

// whoamiCmd shows the current identity
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

// onboardCmd updates the profile and marks onboarding complete
var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Complete onboarding with your profile details",
	RunE:  runOnboard,
}

func init() {
	onboardCmd.Flags().String("name", "", "Display name")
	onboardCmd.Flags().String("email", "", "Email address")
}

func runLogin(cmd *cobra.Command, args []string) error {
	phone := args[0]
	return withEngine(cmd, func(e *engine.Engine) error {
		code, err := e.RequestCode(phone)
		if err != nil {
			return err
		}
		fmt.Printf("Verification code for %s: %s\n", phone, code)
		fmt.Print("Enter code: ")

		reader := bufio.NewReader(os.Stdin)
		entered, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}
		if err := e.SignInWithOTP(phone, strings.TrimSpace(entered)); err != nil {
			return err
		}

		snap := e.Identity.Snapshot()
		fmt.Printf("Signed in as %s\n", snap.User.ID)
		if !snap.OnboardingDone {
			fmt.Println("Run 'prepcoach onboard --name \"Your Name\"' to finish setting up.")
		}
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		if !e.Identity.Snapshot().Authenticated {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := e.SignOut(); err != nil {
			return err
		}
		fmt.Println("Signed out. All local state cleared.")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		snap := e.Identity.Snapshot()
		if !snap.Authenticated {
			fmt.Println("Not signed in. Use: prepcoach login <phone>")
			return nil
		}
		fmt.Printf("User:       %s\n", snap.User.ID)
		fmt.Printf("Phone:      %s\n", snap.User.Phone)
		if snap.User.Name != "" {
			fmt.Printf("Name:       %s\n", snap.User.Name)
		}
		if snap.User.Email != "" {
			fmt.Printf("Email:      %s\n", snap.User.Email)
		}
		fmt.Printf("Onboarded:  %v\n", snap.OnboardingDone)
		fmt.Printf("Premium:    %v\n", snap.User.Premium)
		return nil
	})
}

func runOnboard(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	return withEngine(cmd, func(e *engine.Engine) error {
		var patch identity.Patch
		if name != "" {
			patch.Name = &name
		}
		if email != "" {
			patch.Email = &email
		}
		if patch.Name != nil || patch.Email != nil {
			if err := e.Identity.UpdateUser(patch); err != nil {
				return err
			}
		}
		if err := e.Identity.CompleteOnboarding(); err != nil {
			return err
		}
		fmt.Println("Onboarding complete.")
		return nil
	})
}
