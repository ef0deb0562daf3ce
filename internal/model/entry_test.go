package model

import (
	"testing"
)

func TestSpawnEntry_Key(t *testing.T) {
	entry := NewSpawnEntry("skeleton", 3, true, 5)
	got := entry.Key()
	want := EntryKey{Species: "skeleton", Tier: 3, Elite: true}
	if got != want {
		t.Errorf("Key() = %+v, want %+v", got, want)
	}
}

func TestEntryKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  EntryKey
		want string
	}{
		{
			name: "regular",
			key:  EntryKey{Species: "zombie", Tier: 1},
			want: "zombie:1",
		},
		{
			name: "elite",
			key:  EntryKey{Species: "skeleton", Tier: 4, Elite: true},
			want: "skeleton:4(elite)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDesiredTotal(t *testing.T) {
	tests := []struct {
		name    string
		entries []SpawnEntry
		want    int
	}{
		{
			name:    "empty",
			entries: nil,
			want:    0,
		},
		{
			name: "single entry",
			entries: []SpawnEntry{
				NewSpawnEntry("zombie", 1, false, 3),
			},
			want: 3,
		},
		{
			name: "multiple entries",
			entries: []SpawnEntry{
				NewSpawnEntry("zombie", 1, false, 3),
				NewSpawnEntry("skeleton", 2, true, 1),
				NewSpawnEntry("spider", 1, false, 4),
			},
			want: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DesiredTotal(tt.entries); got != tt.want {
				t.Errorf("DesiredTotal() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDuplicateKeys(t *testing.T) {
	tests := []struct {
		name    string
		entries []SpawnEntry
		want    []EntryKey
	}{
		{
			name: "no duplicates",
			entries: []SpawnEntry{
				NewSpawnEntry("zombie", 1, false, 3),
				NewSpawnEntry("zombie", 2, false, 3),
				NewSpawnEntry("zombie", 1, true, 3),
			},
			want: nil,
		},
		{
			name: "one duplicate reported once",
			entries: []SpawnEntry{
				NewSpawnEntry("zombie", 1, false, 3),
				NewSpawnEntry("zombie", 1, false, 2),
				NewSpawnEntry("zombie", 1, false, 1),
			},
			want: []EntryKey{{Species: "zombie", Tier: 1}},
		},
		{
			name: "duplicates in first-seen order",
			entries: []SpawnEntry{
				NewSpawnEntry("spider", 2, false, 1),
				NewSpawnEntry("zombie", 1, false, 3),
				NewSpawnEntry("spider", 2, false, 1),
				NewSpawnEntry("zombie", 1, false, 2),
			},
			want: []EntryKey{
				{Species: "spider", Tier: 2},
				{Species: "zombie", Tier: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DuplicateKeys(tt.entries)
			if len(got) != len(tt.want) {
				t.Fatalf("DuplicateKeys() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DuplicateKeys()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
