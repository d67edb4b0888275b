package rpcbus

import "testing"

type sampleRequestA struct{ Field string }
type sampleRequestB struct{ Field string }
type sampleResponse struct{ Field string }

func TestFingerprintForIsStableAndDistinctPerPair(t *testing.T) {
	fp1 := fingerprintFor[sampleRequestA, sampleResponse]()
	fp2 := fingerprintFor[sampleRequestA, sampleResponse]()
	if fp1 != fp2 {
		t.Fatal("fingerprintFor must be stable for the same type pair")
	}

	fp3 := fingerprintFor[sampleRequestB, sampleResponse]()
	if fp1 == fp3 {
		t.Fatal("distinct request types sharing a response type must fingerprint differently")
	}
}
