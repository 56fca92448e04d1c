/*
Package session drives a conversation for one identity.

A Session owns the current step, the answer map and the message log. It
hydrates once through the reconciliation engine, then applies submitted answers
with copy-on-write: the next snapshot is fully built and persisted before it
replaces the visible one, so readers never observe a partial transition.

The Manager hands out exclusive sessions, one per identity state key, and can
extend that guarantee across processes with a ports.DistributedLocker.
*/
package session
