// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package broker

import "testing"

func TestMqttToNATSSubjectTranslatesHashWildcard(t *testing.T) {
	got := mqttToNATSSubject("msh/US/#")
	want := "msh.US.>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMqttToNATSSubjectTranslatesPlusWildcard(t *testing.T) {
	got := mqttToNATSSubject("msh/+/2/json/#")
	want := "msh.*.2.json.>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMqttToNATSSubjectNoWildcards(t *testing.T) {
	got := mqttToNATSSubject("msh/US/LongFast/e/ChannelName/!deadbeef")
	want := "msh.US.LongFast.e.ChannelName.!deadbeef"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNatsSubjectToTopicRoundTrip(t *testing.T) {
	original := "msh/US/LongFast/e/ChannelName/!deadbeef"
	subject := mqttToNATSSubject(original)
	got := natsSubjectToTopic(subject)
	if got != original {
		t.Fatalf("round trip got %q, want %q", got, original)
	}
}

func TestDialRejectsEmptyURL(t *testing.T) {
	_, err := Dial(Config{})
	if err == nil {
		t.Fatal("expected error for empty broker URL")
	}
}
