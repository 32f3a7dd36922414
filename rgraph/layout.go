// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import "github.com/cogentforge/vkr/backend"

func layoutName(l backend.ImageLayout) string {
	switch l {
	case backend.LayoutUndefined:
		return "UNDEFINED"
	case backend.LayoutColorAttachment:
		return "COLOR_ATTACHMENT"
	case backend.LayoutDepthAttachmentOptimal:
		return "DEPTH_ATTACHMENT_OPTIMAL"
	case backend.LayoutDepthReadOnly:
		return "DEPTH_READ_ONLY"
	case backend.LayoutShaderReadOnly:
		return "SHADER_READ_ONLY"
	case backend.LayoutTransferSrc:
		return "TRANSFER_SRC"
	case backend.LayoutTransferDst:
		return "TRANSFER_DST"
	case backend.LayoutPresent:
		return "PRESENT"
	default:
		return "UNKNOWN"
	}
}
