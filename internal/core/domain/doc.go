// Package domain defines the error taxonomy shared by the SaveKeep
// persistence core.
//
// Every failure surfaced by the registry, capture, codec and scheduler is a
// *DomainError carrying a stable code. Callers match on the predefined
// sentinels with errors.Is; details and causes never affect matching.
package domain
