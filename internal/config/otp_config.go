package config

import (
	"strconv"
	"time"
)

type OtpConfig interface {
	GetOtpLength() int
	GetOtpRetryAttempts() int
	GetOtpExpiry() time.Duration
}

type Otp struct{}

var _ OtpConfig = Otp{}

func (Otp) GetOtpLength() int {
	return getEnvInt("OTP_LENGTH", 4)
}

func (Otp) GetOtpRetryAttempts() int {
	return getEnvInt("OTP_RETRY_ATTEMPTS", 4)
}

func (Otp) GetOtpExpiry() time.Duration {
	return time.Duration(getEnvInt("OTP_EXPIRY_SECONDS", 600)) * time.Second
}

func getEnvInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(GetEnv(envVar, ""))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
