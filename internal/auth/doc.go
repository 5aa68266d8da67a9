// Package auth manages the OAuth2 token lifecycle for the video platform.
//
// A token moves through these states:
//
//	UNAUTHENTICATED -> (ExchangeCode) -> VALID -> (time) -> NEAR_EXPIRY -> (Refresh) -> VALID
//	NEAR_EXPIRY/EXPIRED -> (Refresh fails) -> UNAUTHENTICATED
//	VALID/EXPIRED -> (Revoke) -> UNAUTHENTICATED
//
// [Manager.NeedsRefresh] opens five minutes before expiry. The client returned by
// [Manager.Client] refreshes inside that window and persists the new token through a [TokenStore].
// A rejected refresh always clears the stored token, so the only way back to VALID is a new login.
//
// [Manager.ExchangeCode] resolves the user's verified email from the id_token, then tokeninfo,
// then userinfo. It fails with [shared.AuthExchangeError] wrapping [shared.ErrMissingEmail]
// or [shared.ErrMissingRefreshToken].
package auth
