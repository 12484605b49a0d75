package workspace

import (
	"fmt"
	"io"

	drive "google.golang.org/api/drive/v3"
)

// DriveFile 是同步所需的最小文件视图。
type DriveFile struct {
	ID       string
	Name     string
	MimeType string
	// Path 是文件在用户盘中的相对路径（含文件名），由目录遍历推导。
	Path string
}

// ListDriveFiles 枚举用户盘内的全部非文件夹文件并推导相对路径。
// 文件夹层级通过 parents 关系拼接；无法定位父目录的文件落在根下。
func ListDriveFiles(srv *drive.Service) ([]DriveFile, error) {
	folderNames := make(map[string]string)
	folderParent := make(map[string]string)
	var files []*drive.File

	pageToken := ""
	for {
		call := srv.Files.List().
			Q("trashed = false").
			Fields("nextPageToken, files(id, name, mimeType, parents)").
			PageSize(1000)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list drive files: %w", err)
		}

		for _, f := range page.Files {
			if f.MimeType == "application/vnd.google-apps.folder" {
				folderNames[f.Id] = f.Name
				if len(f.Parents) > 0 {
					folderParent[f.Id] = f.Parents[0]
				}
				continue
			}
			files = append(files, f)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	result := make([]DriveFile, 0, len(files))
	for _, f := range files {
		path := f.Name
		if len(f.Parents) > 0 {
			prefix := folderPath(f.Parents[0], folderNames, folderParent)
			if prefix != "" {
				path = prefix + "/" + f.Name
			}
		}
		result = append(result, DriveFile{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
			Path:     path,
		})
	}
	return result, nil
}

// folderPath 沿 parents 链向上拼出目录前缀。
func folderPath(folderID string, names, parents map[string]string) string {
	var segments []string
	for folderID != "" {
		name, ok := names[folderID]
		if !ok {
			break
		}
		segments = append([]string{name}, segments...)
		folderID = parents[folderID]
	}
	if len(segments) == 0 {
		return ""
	}
	path := segments[0]
	for _, s := range segments[1:] {
		path += "/" + s
	}
	return path
}

// DownloadDriveFile 下载一个普通（二进制）文件的内容。
func DownloadDriveFile(srv *drive.Service, fileID string) (io.ReadCloser, error) {
	resp, err := srv.Files.Get(fileID).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download drive file: %w", err)
	}
	return resp.Body, nil
}
