// Package crfsearch finds the highest CRF whose encode still meets a
// VMAF target.
//
// The search walks an integer CRF interval with a bisection that keeps
// the last passing candidate. Higher CRF means smaller output, so the
// best answer is the largest value that still scores at or above the
// target.
package crfsearch
