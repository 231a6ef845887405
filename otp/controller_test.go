package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-stickies/otp"
	"github.com/jrsteele09/go-stickies/session"
	"github.com/stretchr/testify/require"
)

// slowTick keeps the background countdown from interfering; tests drive
// OnTick by hand.
const slowTick = time.Hour

func okSend(calls *int) otp.SendFunc {
	return func(context.Context) (session.Result, error) {
		*calls++
		return session.Result{Status: session.StatusSuccess, Message: "OTP has been sent your email."}, nil
	}
}

func newController(t *testing.T, options ...otp.ControllerOption) *otp.Controller {
	t.Helper()
	options = append([]otp.ControllerOption{otp.WithTickInterval(slowTick)}, options...)
	controller, err := otp.NewController(4, 4, 600*time.Second, options...)
	require.NoError(t, err)
	t.Cleanup(controller.Reset)
	return controller
}

func TestRequestCode(t *testing.T) {
	ctx := context.Background()

	t.Run("issues and starts countdown", func(t *testing.T) {
		controller := newController(t)
		calls := 0

		result, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)
		require.Equal(t, session.StatusSuccess, result.Status)
		require.Equal(t, 1, calls)
		require.Equal(t, otp.StateIssued, controller.State())
		require.Equal(t, 1, controller.IssuedCount())
		require.Equal(t, 600, controller.Remaining())
	})

	t.Run("invalid email never reaches the network", func(t *testing.T) {
		controller := newController(t)
		calls := 0

		result, err := controller.RequestCode(ctx, "not-an-email", okSend(&calls))
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, 0, calls)
		require.Equal(t, otp.StateIdle, controller.State())
	})

	t.Run("endpoint error surfaces without consuming an attempt", func(t *testing.T) {
		controller := newController(t)

		result, err := controller.RequestCode(ctx, "a@b.com", func(context.Context) (session.Result, error) {
			return session.Result{Status: session.StatusError, Message: "User already exists. Please login or reset your password."}, nil
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "User already exists. Please login or reset your password.", result.Message)
		require.Equal(t, 0, controller.IssuedCount())
	})

	t.Run("fifth request is rejected locally with max attempts of four", func(t *testing.T) {
		controller := newController(t, otp.WithLockMessage("Password Reset unsuccessful. Please try again later."))
		calls := 0

		for i := 0; i < 4; i++ {
			result, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
			require.NoError(t, err)
			require.Equal(t, session.StatusSuccess, result.Status)
		}
		require.Equal(t, 4, calls)

		result, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "Password Reset unsuccessful. Please try again later.", result.Message)
		require.Equal(t, 4, calls, "no network call once locked")
		require.Equal(t, otp.StateLocked, controller.State())
	})
}

func TestSubmitCode(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, controller *otp.Controller) {
		t.Helper()
		calls := 0
		_, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)
	}

	accept := func(context.Context) (session.Result, error) {
		return session.Result{Status: session.StatusSuccess, Message: "User Created"}, nil
	}
	reject := func(context.Context) (session.Result, error) {
		return session.Result{Status: session.StatusError, Message: "invalid otp"}, nil
	}

	t.Run("accepted completes the challenge", func(t *testing.T) {
		controller := newController(t)
		issue(t, controller)

		result, err := controller.SubmitCode(ctx, "1234", accept)
		require.NoError(t, err)
		require.Equal(t, session.StatusSuccess, result.Status)
		require.Equal(t, otp.StateAccepted, controller.State())
		require.Equal(t, "1234", controller.Code())
	})

	t.Run("wrong length never reaches the network", func(t *testing.T) {
		controller := newController(t)
		issue(t, controller)

		called := false
		result, err := controller.SubmitCode(ctx, "123", func(context.Context) (session.Result, error) {
			called = true
			return session.Result{}, nil
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "Invalid code provided. Please try again.", result.Message)
		require.False(t, called)
	})

	t.Run("submit before any issuance is rejected", func(t *testing.T) {
		controller := newController(t)

		result, err := controller.SubmitCode(ctx, "1234", accept)
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
	})

	t.Run("rejection consumes an attempt and allows retry", func(t *testing.T) {
		controller := newController(t)
		issue(t, controller)

		result, err := controller.SubmitCode(ctx, "0000", reject)
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, otp.StateRejected, controller.State())
		require.Equal(t, 2, controller.IssuedCount())

		result, err = controller.SubmitCode(ctx, "1234", accept)
		require.NoError(t, err)
		require.Equal(t, session.StatusSuccess, result.Status)
	})

	t.Run("exceeding the ceiling locks the challenge", func(t *testing.T) {
		controller := newController(t, otp.WithLockMessage("Sign Up unsuccessful. Please try again later."))
		issue(t, controller)

		for i := 0; i < 3; i++ {
			result, err := controller.SubmitCode(ctx, "0000", reject)
			require.NoError(t, err)
			require.Equal(t, session.StatusError, result.Status)
		}
		require.Equal(t, 4, controller.IssuedCount())

		result, err := controller.SubmitCode(ctx, "0000", reject)
		require.NoError(t, err)
		require.Equal(t, "Sign Up unsuccessful. Please try again later.", result.Message)
		require.Equal(t, otp.StateLocked, controller.State())

		// Terminally locked: further submissions fail without a network call.
		called := false
		result, err = controller.SubmitCode(ctx, "1234", func(context.Context) (session.Result, error) {
			called = true
			return session.Result{}, nil
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.False(t, called)
	})
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("countdown reaching zero invalidates the code", func(t *testing.T) {
		expired := false
		controller, err := otp.NewController(4, 4, 2*time.Second,
			otp.WithTickInterval(slowTick),
			otp.WithExpireHandler(func() { expired = true }))
		require.NoError(t, err)
		t.Cleanup(controller.Reset)

		calls := 0
		_, err = controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)

		require.False(t, controller.OnTick())
		require.True(t, controller.OnTick())
		require.True(t, expired)
		require.Equal(t, 0, controller.Remaining())

		// Full-length code, but the challenge is gone.
		called := false
		result, err := controller.SubmitCode(ctx, "1234", func(context.Context) (session.Result, error) {
			called = true
			return session.Result{}, nil
		})
		require.NoError(t, err)
		require.Equal(t, session.StatusError, result.Status)
		require.Equal(t, "Your 4 digit code has expired. Please try again.", result.Message)
		require.False(t, called)
	})

	t.Run("a fresh request restarts the countdown", func(t *testing.T) {
		controller := newController(t)
		calls := 0
		_, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)

		for controller.Remaining() > 0 {
			controller.OnTick()
		}

		_, err = controller.RequestCode(ctx, "a@b.com", okSend(&calls))
		require.NoError(t, err)
		require.Equal(t, 600, controller.Remaining())
		require.Equal(t, otp.StateIssued, controller.State())
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	controller := newController(t)

	calls := 0
	_, err := controller.RequestCode(ctx, "a@b.com", okSend(&calls))
	require.NoError(t, err)

	controller.Reset()
	require.Equal(t, otp.StateIdle, controller.State())
	require.Equal(t, 0, controller.IssuedCount())
	require.Equal(t, 0, controller.Remaining())
	require.Empty(t, controller.Code())
}
