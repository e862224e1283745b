// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// DonationIntent is a pending contribution awaiting payment.
type DonationIntent struct {
	ID         string    `json:"donation_id"`
	Amount     float64   `json:"amount"`
	DonorName  string    `json:"donor_name"`
	DonorEmail string    `json:"donor_email"`
	Employer   string    `json:"employer,omitempty"`
	Occupation string    `json:"occupation,omitempty"`
	Recurring  bool      `json:"recurring"`
	PaymentURL string    `json:"secure_link"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// PaymentGateway turns an intent into a link the donor completes payment at.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, intent DonationIntent) (string, error)
}

// =============================================================================
// Stub gateway
// =============================================================================

// LinkGateway builds a link on the campaign's own donation page. It performs
// no network calls.
type LinkGateway struct {
	BaseURL string
}

// NewLinkGateway returns a LinkGateway. An empty baseURL uses a placeholder host.
func NewLinkGateway(baseURL string) *LinkGateway {
	if baseURL == "" {
		baseURL = "https://donate.example.org"
	}
	return &LinkGateway{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (g *LinkGateway) CreatePaymentLink(_ context.Context, intent DonationIntent) (string, error) {
	q := url.Values{}
	q.Set("amount", fmt.Sprintf("%.2f", intent.Amount))
	if intent.Recurring {
		q.Set("recurring", "monthly")
	}
	return fmt.Sprintf("%s/donate/%s?%s", g.BaseURL, url.PathEscape(intent.ID), q.Encode()), nil
}

// =============================================================================
// Midtrans Snap gateway
// =============================================================================

// MidtransGateway creates Snap transactions and returns their redirect URL.
type MidtransGateway struct {
	client    snap.Client
	finishURL string
}

// NewMidtransGateway configures a Snap client. production selects the live
// environment, otherwise sandbox.
func NewMidtransGateway(serverKey string, production bool, finishURL string) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{finishURL: finishURL}
	g.client.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreatePaymentLink(_ context.Context, intent DonationIntent) (string, error) {
	amount := int64(math.Round(intent.Amount))
	first, last, _ := strings.Cut(intent.DonorName, " ")

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  intent.ID,
			GrossAmt: amount,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: first,
			LName: last,
			Email: intent.DonorEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    "contribution",
				Price: amount,
				Qty:   1,
				Name:  "Campaign contribution",
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}
	if g.finishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: g.finishURL}
	}

	resp, midErr := g.client.CreateTransaction(req)
	if midErr != nil {
		return "", fmt.Errorf("midtrans error: %v", midErr.GetMessage())
	}
	return resp.RedirectURL, nil
}
