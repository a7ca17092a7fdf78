package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an HS256 token for local auth mode",
		Long: `Sign a token with TEST_JWT_SECRET, or LOCAL_AUTH_SHARED_SECRET when the
former is unset. The API accepts it when started with AUTH0_TEST_MODE=1 or
LOCAL_AUTH_MODE=hs256.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("TEST_JWT_SECRET")
			if secret == "" {
				secret = os.Getenv("LOCAL_AUTH_SHARED_SECRET")
			}
			tok, err := signToken([]byte(secret), sub, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "user id placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func signToken(secret []byte, sub string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("TEST_JWT_SECRET or LOCAL_AUTH_SHARED_SECRET must be set")
	}
	if sub == "" {
		return "", errors.New("--sub must not be empty")
	}
	if ttl <= 0 {
		return "", errors.New("--ttl must be positive")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}
