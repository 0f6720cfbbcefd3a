package service

// QRCodeService defines the interface for QR code generation services
type QRCodeService interface {
	// GenerateSignInQR renders a sign-in hand-off link as a QR code PNG,
	// for completing an email or phone flow on a second device.
	GenerateSignInQR(link string) ([]byte, error)
}
