// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "foo")

	assert.False(t, FileExists(file))
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0640))
	assert.True(t, FileExists(file))
}

func TestResolvePathEmptyPath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)
}

func TestResolvePathValidPath(t *testing.T) {
	dir := t.TempDir()

	target := filepath.Join(dir, "target")
	require := assert.New(t)
	require.NoError(os.WriteFile(target, []byte(""), 0640))

	linkDir := filepath.Join(dir, "a/b/c")
	linkFile := filepath.Join(linkDir, "link")
	require.NoError(os.MkdirAll(linkDir, 0750))
	require.NoError(syscall.Symlink(target, linkFile))

	absolute, err := filepath.Abs(target)
	require.NoError(err)
	resolvedTarget, err := filepath.EvalSymlinks(absolute)
	require.NoError(err)

	resolvedLink, err := ResolvePath(linkFile)
	require.NoError(err)
	assert.Equal(t, resolvedTarget, resolvedLink)
}

func TestResolvePathENOENT(t *testing.T) {
	_, err := ResolvePath(filepath.Join(t.TempDir(), "missing", "link"))
	assert.Error(t, err)
}

func TestIsBlockDeviceRejectsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "foo")
	assert.NoError(t, os.WriteFile(file, []byte(""), 0640))

	assert.False(t, IsBlockDevice(file))
	assert.False(t, IsBlockDevice(""))
	assert.False(t, IsBlockDevice(filepath.Join(dir, "missing")))
}

func TestWriteFileErrNoPath(t *testing.T) {
	err := WriteFile("", "", 0000)
	assert.Error(t, err)
}

func TestWriteFileErrWriteFail(t *testing.T) {
	dir := t.TempDir()

	// attempt to write a file over an existing directory
	err := WriteFile(dir, "", 0000)
	assert.Error(t, err)
}

func TestGetFileContents(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "foo")

	// file doesn't exist
	_, err := GetFileContents(file)
	assert.Error(t, err)

	data := []string{"", " ", "\n", "foo", "foo\nbar", "processor   : 0\nvendor_id   : GenuineIntel\n"}
	for _, contents := range data {
		assert.NoError(t, os.WriteFile(file, []byte(contents), 0640))

		got, err := GetFileContents(file)
		assert.NoError(t, err)
		assert.Equal(t, contents, got)
	}
}

func TestVerifyContainerID(t *testing.T) {
	data := []struct {
		id    string
		valid bool
	}{
		{"", false},
		{".", false},
		{"a", false},
		{"a.", true},
		{"aa", true},
		{"1234567890", true},
		{"a_b-c.d", true},
		{"/foo", false},
		{"foo/bar", false},
		{"foo bar", false},
	}

	for _, d := range data {
		err := VerifyContainerID(d.id)
		if d.valid {
			assert.NoError(t, err, d.id)
		} else {
			assert.Error(t, err, d.id)
		}
	}
}
