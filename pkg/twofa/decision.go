package twofa

// DecisionType is the closed set of next actions the enrollment state
// machine can choose.
type DecisionType string

const (
	// DecisionAlreadyEnabled rejects the request: the requested method
	// is already enabled and verified.
	DecisionAlreadyEnabled DecisionType = "ALREADY_ENABLED"
	// DecisionSendOtp sends a verification code for Decision.Method.
	DecisionSendOtp DecisionType = "SEND_OTP"
	// DecisionGenerateTotp stages a fresh TOTP secret in the pending
	// fields and returns a provisioning URI.
	DecisionGenerateTotp DecisionType = "GENERATE_TOTP"
	// DecisionGenerateOtp starts enrollment on a setting that was never
	// enabled: TOTP requests generate a secret, everything else sends a
	// code.
	DecisionGenerateOtp DecisionType = "GENERATE_OTP"
)

// Decision is the enrollment state machine's verdict. Method names the
// method whose channel any resulting code must use; for an enabled
// setting with a different notifyable method this is the current
// method, not the requested one.
type Decision struct {
	Type   DecisionType
	Method Method
}

// DecideEnableRequest encodes the enable-request decision table for an
// existing setting.
//
// When the current method differs from the requested one, a notifyable
// current method gets a code for itself, not for the requested method.
// The user re-verifies the method they are moving away from before the
// change proceeds. This mirrors long-standing behavior and is kept
// deliberately; see the design notes.
func DecideEnableRequest(s *Setting, requested Method) Decision {
	if !s.IsEnabled {
		return Decision{Type: DecisionGenerateOtp, Method: requested}
	}

	if s.Method == requested {
		if s.IsVerified() {
			return Decision{Type: DecisionAlreadyEnabled, Method: requested}
		}
		if requested.IsNotifyable() {
			return Decision{Type: DecisionSendOtp, Method: requested}
		}
		return Decision{Type: DecisionGenerateTotp, Method: requested}
	}

	if s.Method.IsNotifyable() {
		return Decision{Type: DecisionSendOtp, Method: s.Method}
	}
	return Decision{Type: DecisionGenerateTotp, Method: requested}
}
