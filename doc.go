// Package access implements the credential lifecycle for homeledger clients:
// the identity-provider session, backend user provisioning, the authorized
// request gateway, and household invite codes.
//
// Session lifecycle:
//   - SessionManager owns the session state machine. It builds the provider
//     authorization URL, exchanges the callback code for tokens, refreshes the
//     access token silently, and tears everything down on logout. The bearer
//     token it acquires is published through TokenStore.
//   - TokenStore is the process-wide read cache for the current bearer token.
//     Writes carry the session generation observed when the originating request
//     began; a write from an older generation is discarded, so a refresh that
//     resolves after logout cannot resurrect a token.
//
// Outbound requests:
//   - Gateway is the single chokepoint for backend calls. It attaches the
//     bearer token when one is present, invalidates the store on a 401, and
//     normalizes server and transport failures into typed errors.
//
// Invites:
//   - InviteManager issues, lists, and redeems household invite codes. The
//     server is the authority on validity; the client only validates the
//     requested expiration window before issuing.
package access
