/*
Package authsdk is the client for the Townhall authentication service, and
holds the request, response and error types shared with the server.

# SDKClient vs Session

SDKClient wraps every endpoint. Calls that need a bearer token take it as
an argument:

	client := authsdk.NewSDKClient("https://auth.townhall.example")

	out, err := client.SignIn(ctx, "alice", "correct horse")
	me, err := client.Me(ctx, out.AccessToken)

A Session keeps the token pair and refreshes the access token shortly
before it expires:

	session, err := client.AuthenticateWithPassword(ctx, "alice", "correct horse")
	me, err := session.Me(ctx)
	err = session.SignOut(ctx)

# QR login

The device that wants to sign in creates a session and renders its ID, or
fetches the PNG from /v1/auth/qr/sessions/{id}/qr.png:

	qr, err := client.CreateQRSession(ctx)

A signed in device scans it and confirms:

	_, err = session.ConfirmQRSession(ctx, qr.SessionID)

The first device then claims its tokens. Claiming removes the session; a
second claim fails with ErrSessionNotFound.

	out, err := client.ClaimQRSession(ctx, qr.SessionID)

# Errors

Non-2xx responses are returned as *APIError and match the predefined
values with errors.Is:

	_, err := client.SignIn(ctx, "alice", "wrong")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// 401
	}
	if errors.Is(err, authsdk.ErrAccountInactive) {
		// 403, the account must be reactivated by appeal
	}

Every token failure is reported as 401 without saying which check failed.
*/
package authsdk
