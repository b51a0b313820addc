package services

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrAddressNotFound      = errors.New("address not found")
	ErrVoucherNotFound      = errors.New("voucher not found")
	ErrVoucherNotApplicable = errors.New("voucher cannot be applied")
	ErrVoucherExhausted     = errors.New("voucher usage limit reached")
	ErrPendingOrderNotFound = errors.New("pending order not found or already processed")
	ErrAmountMismatch       = errors.New("paid amount does not match order total")
	ErrOrderExists          = errors.New("order already exists")
)
